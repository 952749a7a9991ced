package featureflag

type Flag string

const (
	// FlagDisableRegionWatch turns off the websocket watch endpoint.
	FlagDisableRegionWatch Flag = "DISABLE_REGION_WATCH"

	// FlagEnableSQLDebug mounts the SQL browser on the admin listener.
	FlagEnableSQLDebug Flag = "ENABLE_SQL_DEBUG"
)
