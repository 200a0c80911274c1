// Package config loads the boardsync project file.
//
// The file is boardsync.json (comments and trailing commas allowed) or
// boardsync.yaml, found in the working directory or one of its parents.
//
// # Configuration File Structure
//
//	{
//	  // realtime endpoint; http(s) is mapped to ws(s)
//	  "url": "wss://boards.example.com/ws",
//	  "userId": 9,
//	  "room": 42,
//	  "token": {"env": "BOARDSYNC_TOKEN", "param": "token"},
//	  "connectTimeout": "10s",
//	  "heartbeat": "30s",
//	  "reconnect": {"maxAttempts": 5, "baseDelay": "1s", "maxDelay": "1m", "jitter": 0.2},
//	  "metrics": {"listen": "127.0.0.1:9464"},
//	  "transcript": {
//	    "bucket": "board-transcripts",
//	    "prefix": "prod/",
//	    "region": "eu-west-1",
//	    "flushInterval": "1m",
//	  },
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    return err
//	}
//	rc, err := cfg.ToRealtime()
package config
