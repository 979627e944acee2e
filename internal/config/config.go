package config

import (
	"flag"
	"os"
	"strconv"
)

type Config struct {
	BlockPower int   // records per block = 1 << BlockPower
	Records    int   // records loaded before checking
	Operations int   // 0 - run until interrupted
	Readers    int   // concurrent readers
	Seed       int64 // 0 - random seed
	Debug      bool
}

// Default returns the configuration without reading flags
func Default() *Config {
	return &Config{
		BlockPower: 12,
		Records:    10000,
		Operations: 0,
		Readers:    4,
		Seed:       0,
		Debug:      false,
	}
}

// NewConfig reads flags, environment variables of the same name override the defaults
func NewConfig() *Config {
	d := Default()
	p := flag.Int("BLOCK_POWER", envInt("BLOCK_POWER", d.BlockPower), "records per block as power of two")
	r := flag.Int("RECORDS", envInt("RECORDS", d.Records), "records loaded before checking")
	o := flag.Int("OPERATIONS", envInt("OPERATIONS", d.Operations), "number of edits, 0 - until interrupted")
	n := flag.Int("READERS", envInt("READERS", d.Readers), "concurrent readers")
	s := flag.Int64("SEED", int64(envInt("SEED", int(d.Seed))), "random seed, 0 - random")
	g := flag.Bool("DEBUG", envBool("DEBUG", d.Debug), "debug logging")
	flag.Parse()

	return &Config{
		BlockPower: *p,
		Records:    *r,
		Operations: *o,
		Readers:    *n,
		Seed:       *s,
		Debug:      *g,
	}
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
