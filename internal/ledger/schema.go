package ledger

// Schema contains the DDL for the result ledger.
const Schema = `
-- One row per finished comparison.
CREATE TABLE IF NOT EXISTS results (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    verdict     INTEGER NOT NULL,
    attempts    INTEGER NOT NULL,
    template    TEXT NOT NULL,
    selector    TEXT NOT NULL DEFAULT '',
    score       REAL,
    tolerance   REAL NOT NULL DEFAULT 0,
    points      INTEGER NOT NULL DEFAULT 0,
    loc_x       INTEGER,
    loc_y       INTEGER,
    candidate   TEXT NOT NULL DEFAULT '',
    diff        TEXT NOT NULL DEFAULT '',
    html        TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_template ON results(template);
CREATE INDEX IF NOT EXISTS idx_results_verdict ON results(verdict);
`
