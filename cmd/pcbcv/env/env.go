package env

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/probeworks/pcbcv/pkg/warehouse/objects"
)

// DatasetSource points at the public dataset repository fetched by
// `dataset download` with a sparse checkout.
type DatasetSource struct {
	Repo string `yaml:"repo"`
	Ref  string `yaml:"ref,omitempty"`

	// Path is the only directory fetched from the repository.
	Path string `yaml:"path"`
}

// Env is the per-project environment file ("pcbcvenv"): object names,
// compute sizing and the dataset source. All fields have defaults, so an
// empty or missing file is fine.
type Env struct {
	Objects objects.Names  `yaml:"objects"`
	Sizing  objects.Sizing `yaml:"sizing"`
	Dataset DatasetSource  `yaml:"dataset"`
}

func New() *Env {
	e := &Env{}
	e.fillDefaults()
	return e
}

func (e *Env) fillDefaults() {
	dn := objects.DefaultNames()
	if e.Objects.Database == "" {
		e.Objects.Database = dn.Database
	}
	if e.Objects.Schema == "" {
		e.Objects.Schema = dn.Schema
	}
	if e.Objects.Role == "" {
		e.Objects.Role = dn.Role
	}
	if e.Objects.Warehouse == "" {
		e.Objects.Warehouse = dn.Warehouse
	}
	if e.Objects.ComputePool == "" {
		e.Objects.ComputePool = dn.ComputePool
	}
	if e.Objects.Stage == "" {
		e.Objects.Stage = dn.Stage
	}
	if e.Objects.Notebook == "" {
		e.Objects.Notebook = dn.Notebook
	}
	if e.Objects.App == "" {
		e.Objects.App = dn.App
	}

	ds := objects.DefaultSizing()
	if e.Sizing.WarehouseSize == "" {
		e.Sizing.WarehouseSize = ds.WarehouseSize
	}
	if e.Sizing.InstanceFamily == "" {
		e.Sizing.InstanceFamily = ds.InstanceFamily
	}
	if e.Sizing.MinNodes == 0 {
		e.Sizing.MinNodes = ds.MinNodes
	}
	if e.Sizing.MaxNodes == 0 {
		e.Sizing.MaxNodes = ds.MaxNodes
	}

	if e.Dataset.Repo == "" {
		e.Dataset.Repo = "https://github.com/tangsanli5201/DeepPCB.git"
	}
	if e.Dataset.Path == "" {
		e.Dataset.Path = "PCBData"
	}
}

// LoadEnv reads the env file at filepath.
//
// A missing file yields the defaults; a present but broken file is an error.
func LoadEnv(filepath string) (*Env, error) {
	env := Env{}

	content, err := os.ReadFile(filepath)
	if err != nil {
		env.fillDefaults()
		return &env, nil
	}

	if err := yaml.Unmarshal(content, &env); err != nil {
		return nil, err
	}
	env.fillDefaults()
	return &env, nil
}
