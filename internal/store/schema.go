package store

// Internal tables are prefixed with an underscore so that reconciliation can tell
// them apart from user collections.

// CreateConfigsTableSQL creates the persisted settings table.
const CreateConfigsTableSQL = `
CREATE TABLE IF NOT EXISTS _configs (
    id INTEGER PRIMARY KEY,
    key VARCHAR(255) NOT NULL UNIQUE,
    value TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// CreateSuperAdminsTableSQL creates the administrator account table.
const CreateSuperAdminsTableSQL = `
CREATE TABLE IF NOT EXISTS _super_admins (
    id INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Setting keys seeded on first start.
const (
	SettingSecret         = "secret"
	SettingAppName        = "appname"
	SettingRecordsPerPage = "records_per_page"
)

// Default administrator created on first start.
const (
	DefaultAdminName     = "Admin"
	DefaultAdminEmail    = "admin@moosedb.com"
	DefaultAdminPassword = "moosedb"
)

// AllSchemaSQL returns the statements that create the internal tables.
func AllSchemaSQL() []string {
	return []string{
		CreateConfigsTableSQL,
		CreateSuperAdminsTableSQL,
	}
}
