package repository

// Statements are applied one at a time; not every driver accepts several
// statements per Exec.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS finalized_period (
		season_number     BIGINT  PRIMARY KEY,
		start_time        BIGINT  NOT NULL,
		end_time          BIGINT  NOT NULL,
		total_votes       TEXT    NOT NULL,
		total_items_count INTEGER NOT NULL,
		top_item_id       TEXT    NOT NULL,
		top_item_votes    TEXT    NOT NULL,
		finalized_at      BIGINT  NOT NULL,
		snapshot_hash     TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS finalized_snapshot (
		season_number       BIGINT           NOT NULL,
		item_id             TEXT             NOT NULL,
		final_rank          INTEGER          NOT NULL,
		total_votes         TEXT             NOT NULL,
		percentage_of_total DOUBLE PRECISION NOT NULL,
		finalized_at        BIGINT           NOT NULL,
		snapshot_hash       TEXT             NOT NULL,
		PRIMARY KEY (season_number, item_id),
		UNIQUE (season_number, final_rank)
	)`,
}
