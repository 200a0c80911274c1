package errors

import "sort"

// ErrorTemplate defines a registered error code.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://boardsync.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (BS100-BS199)

	"BS101": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No boardsync.json or boardsync.yaml was found in the directory or any parent.",
		DocURL:   docBase + "BS101",
	},
	"BS102": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   docBase + "BS102",
	},
	"BS103": {
		Category: CategoryConfig,
		Message:  "Missing required configuration",
		Detail:   "A required configuration value is not set.",
		DocURL:   docBase + "BS103",
	},
	"BS104": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations are written as Go duration strings such as \"500ms\", \"30s\" or \"1m\".",
		DocURL:   docBase + "BS104",
	},
	"BS105": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is outside its allowed range.",
		DocURL:   docBase + "BS105",
	},

	// Authentication (BS200-BS299)

	"BS201": {
		Category: CategoryAuth,
		Message:  "No auth token",
		Detail:   "The client needs a bearer token before it can open the realtime channel.",
		DocURL:   docBase + "BS201",
	},
	"BS202": {
		Category: CategoryAuth,
		Message:  "Token rejected",
		Detail:   "The server refused the token during the handshake. The client does not retry rejected tokens.",
		DocURL:   docBase + "BS202",
	},

	// Connection (BS300-BS399)

	"BS301": {
		Category: CategoryConnection,
		Message:  "Connection failed",
		Detail:   "The realtime endpoint could not be reached.",
		DocURL:   docBase + "BS301",
	},
	"BS302": {
		Category: CategoryConnection,
		Message:  "Connection timed out",
		Detail:   "The WebSocket handshake did not complete within the connect timeout.",
		DocURL:   docBase + "BS302",
	},
	"BS303": {
		Category: CategoryConnection,
		Message:  "Not connected",
		Detail:   "Messages are not queued while the channel is down.",
		DocURL:   docBase + "BS303",
	},
	"BS304": {
		Category: CategoryConnection,
		Message:  "Reconnect attempts exhausted",
		Detail:   "The channel closed unexpectedly and every automatic reconnect failed.",
		DocURL:   docBase + "BS304",
	},
	"BS305": {
		Category: CategoryConnection,
		Message:  "Invalid message",
		Detail:   "The message kind or payload could not be encoded.",
		DocURL:   docBase + "BS305",
	},

	// Transcript archives (BS400-BS499)

	"BS401": {
		Category: CategoryArchive,
		Message:  "Archive write failed",
		Detail:   "A transcript batch could not be stored. The batch is lost.",
		DocURL:   docBase + "BS401",
	},
	"BS402": {
		Category: CategoryArchive,
		Message:  "Archive read failed",
		Detail:   "The transcript archive is not a gzip-compressed JSON lines file.",
		DocURL:   docBase + "BS402",
	},
	"BS403": {
		Category: CategoryArchive,
		Message:  "Archive digest mismatch",
		Detail:   "The archive contents do not match the digest in its key.",
		DocURL:   docBase + "BS403",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
