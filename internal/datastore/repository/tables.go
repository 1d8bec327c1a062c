package repository

// Table names used in raw joins and subqueries
const (
	tableCameras       = "cameras"
	tableObservers     = "observers"
	tableLocations     = "locations"
	tableROIs          = "rois"
	tableImages        = "images"
	tableSkyBrightness = "sky_brightness"
	tableConfigs       = "configs"
)

// batchChunk bounds the number of bound parameters in IN clauses
const batchChunk = 500
