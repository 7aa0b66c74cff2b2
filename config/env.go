package config

import "os"

var (
	defaultLookupEnv = os.LookupEnv
	defaultSetEnv    = os.Setenv

	lookupEnv = defaultLookupEnv
	setEnv    = defaultSetEnv
)
