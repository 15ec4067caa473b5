package config

// EnvPrefix is intentionally empty: every variable names its full
// MEMBERFEES_* key in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "MEMBERFEES_DB_DSN"
	EnvDBHost = "MEMBERFEES_DB_HOST"
	EnvDBUser = "MEMBERFEES_DB_USER"
	EnvDBName = "MEMBERFEES_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
