// Package errors provides the coded errors the boardsync CLI prints.
//
// Every code maps to a short message, a longer explanation and a
// documentation link. Codes are grouped by category:
//
//   - BS1xx config: the project file is missing or invalid
//   - BS2xx auth: no token, or the server rejected it
//   - BS3xx connection: dial, timeout and reconnect failures
//   - BS4xx archive: transcript upload and read failures
//
// # Usage
//
//	err := errors.New("BS102").
//	    WithLocation("boardsync.json", 7, 14).
//	    WithSuggestion("remove the trailing comma").
//	    Wrap(parseErr)
//
//	errors.Print(os.Stderr, err)
//	// ERROR BS102: Invalid config file
//	//
//	//   boardsync.json:7:14
//	//
//	//        5 │   "reconnect": {
//	//        6 │     "maxAttempts": 5,
//	//   →    7 │     "baseDelay": "1s",
//	//          │              ^
//	//   ...
package errors
