package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/chainledger/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransfersTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP,
		transfer_count INTEGER DEFAULT 0,
		status TEXT DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		block_number TEXT,
		time_stamp INTEGER NOT NULL,
		from_addr TEXT NOT NULL,
		to_addr TEXT NOT NULL,
		value TEXT NOT NULL,
		contract_address TEXT NOT NULL DEFAULT '',
		token_symbol TEXT NOT NULL DEFAULT '',
		token_decimal TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		sync_run_id TEXT,
		UNIQUE(hash, from_addr, to_addr, value, token_symbol, contract_address)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		hash TEXT PRIMARY KEY,
		from_addr TEXT NOT NULL DEFAULT '',
		input_data TEXT NOT NULL DEFAULT '',
		gas_price TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS receipts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		gas_used TEXT NOT NULL,
		effective_gas_price TEXT NOT NULL,
		UNIQUE(hash, gas_used, effective_gas_price)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		day TEXT NOT NULL,
		price TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		UNIQUE(symbol, day)
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_time ON transfers(time_stamp);
	CREATE INDEX IF NOT EXISTS idx_price_history_symbol ON price_history(symbol, day);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

func migrateTransfersTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transfers'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'transfers' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'transfers' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transfers)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'transfers'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'transfers': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'transfers'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'transfers': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'transfers'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'transfers': %v", err)
		}
		return
	}

	if _, ok := columnExists["sync_run_id"]; !ok {
		_, err := DB.Exec("ALTER TABLE transfers ADD COLUMN sync_run_id TEXT")
		if err != nil {
			if logger.L != nil {
				logger.L.Error("Error adding 'sync_run_id' column to 'transfers' table", "error", err)
			}
		} else if logger.L != nil {
			logger.L.Info("Added 'sync_run_id' column to 'transfers' table")
		}
	}
	if _, ok := columnExists["block_number"]; !ok {
		_, err := DB.Exec("ALTER TABLE transfers ADD COLUMN block_number TEXT")
		if err != nil {
			if logger.L != nil {
				logger.L.Error("Error adding 'block_number' column to 'transfers' table", "error", err)
			}
		} else if logger.L != nil {
			logger.L.Info("Added 'block_number' column to 'transfers' table")
		}
	}
}
