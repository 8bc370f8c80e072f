// Package config provides configuration loading for the postline server.
//
// Configuration comes from an optional postline.json (or .yaml/.yml) file,
// then environment overrides, then defaults for anything left unset.
//
// # Configuration File Structure
//
//	{
//	  "env": "production",
//	  "addr": ":8080",
//	  "logLevel": "info",
//	  "assets": {
//	    "manifest": "s3://blog-assets/manifest.json",
//	    "s3Region": "eu-west-1"
//	  },
//	  "store": {
//	    "driver": "redis",
//	    "redis": {"addr": "localhost:6379", "prefix": "postline:"}
//	  },
//	  "live": {"heartbeat": "30s", "sendBuffer": 64},
//	  "render": {"prefetchTimeout": "5s"}
//	}
//
// # Environment
//
//	POSTLINE_ENV             development | production
//	POSTLINE_ADDR            listen address
//	POSTLINE_REDIS_ADDR      selects the redis store at this address
//	POSTLINE_ASSET_MANIFEST  manifest path or s3:// URI
//	POSTLINE_LOG_LEVEL       debug | info | warn | error
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    errors.PrintError(os.Stderr, err)
//	    os.Exit(1)
//	}
package config
