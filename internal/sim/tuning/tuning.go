package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	// ChangesPerTick is the write budget of one paste job per tick.
	ChangesPerTick int `yaml:"changes_per_tick"`
	// MaxWritesPerTick caps writes across all jobs per tick; 0 disables it.
	MaxWritesPerTick int `yaml:"max_writes_per_tick"`
	IOWorkers        int `yaml:"io_workers"`

	EngineVersion string `yaml:"engine_version"`
	BlocksCatalog string `yaml:"blocks_catalog"`
	SchematicDir  string `yaml:"schematic_dir"`
	SchematicGlob string `yaml:"schematic_glob"`
	CompressSaves bool   `yaml:"compress_saves"`

	JobLogDir string `yaml:"job_log_dir"`
	WorldDB   string `yaml:"world_db"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:     20,
		ChangesPerTick: 2500,
		IOWorkers:      4,
		EngineVersion:  "1.20.4",
		BlocksCatalog:  "./configs/blocks.json",
		SchematicDir:   "./schematics",
		SchematicGlob:  "*.schematic",
		JobLogDir:      "./data/jobs",
		WorldDB:        "./data/world.sqlite",
	}
}

// Load reads path over Defaults; keys absent from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in 1..1000, got %d", t.TickRateHz)
	}
	if t.ChangesPerTick <= 0 {
		return fmt.Errorf("changes_per_tick must be positive, got %d", t.ChangesPerTick)
	}
	if t.MaxWritesPerTick < 0 {
		return fmt.Errorf("max_writes_per_tick must not be negative, got %d", t.MaxWritesPerTick)
	}
	if t.IOWorkers <= 0 {
		return fmt.Errorf("io_workers must be positive, got %d", t.IOWorkers)
	}
	return nil
}
