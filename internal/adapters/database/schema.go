package database

const MAIN_SCHEMA = "squid"
const TESTING_SCHEMA = "squid_test"

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}
