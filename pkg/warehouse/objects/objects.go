// Package objects declares every warehouse object this tool manages and the
// SQL to create and drop it. Provisioning is a flat ordered list of steps so
// that teardown can be derived instead of hand-maintained.
package objects

import "fmt"

// Names of the managed objects. Zero values are filled by Defaults.
type Names struct {
	Database    string `yaml:"database"`
	Schema      string `yaml:"schema"`
	Role        string `yaml:"role"`
	Warehouse   string `yaml:"warehouse"`
	ComputePool string `yaml:"computePool"`
	Stage       string `yaml:"stage"`
	Notebook    string `yaml:"notebook"`
	App         string `yaml:"app"`
}

// Sizing of the compute the demo provisions.
type Sizing struct {
	WarehouseSize  string `yaml:"warehouseSize"`
	InstanceFamily string `yaml:"instanceFamily"`
	MinNodes       int    `yaml:"minNodes"`
	MaxNodes       int    `yaml:"maxNodes"`
}

func DefaultNames() Names {
	return Names{
		Database:    "PCB_CV",
		Schema:      "PUBLIC",
		Role:        "PCB_CV_ROLE",
		Warehouse:   "PCB_CV_WH",
		ComputePool: "PCB_CV_GPU_POOL",
		Stage:       "PCB_CV_STAGE",
		Notebook:    "PCB_CV_TRAIN_NOTEBOOK",
		App:         "PCB_CV_INSPECTOR",
	}
}

func DefaultSizing() Sizing {
	return Sizing{
		WarehouseSize:  "XSMALL",
		InstanceFamily: "GPU_NV_S",
		MinNodes:       1,
		MaxNodes:       1,
	}
}

// Qualified returns "<db>.<schema>.<name>" for a schema-level object.
func (n Names) Qualified(name string) string {
	return n.Database + "." + n.Schema + "." + name
}

// Step is one provisioning unit: what `setup` runs, what `teardown` runs,
// and the name of the skip flag governing both.
type Step struct {
	// Name doubles as the value of --skip-<Name> on setup/teardown.
	Name string

	// Create statements, in order. Empty for objects created elsewhere
	// (notebook and app are created by their deploy commands) which still
	// need a teardown.
	Create []string

	// Drop statements, in order.
	Drop []string
}

// datasetTables are written by `dataset upload` through the driver.
var datasetTables = []string{
	"LABELS_TRAIN", "TRAIN_IMAGES_LABELS", "TRAINING_DATA", "TEST_DATA",
}

// Provisioning returns the ordered step list. Teardown must execute the
// Drop statements in reverse step order.
func Provisioning(n Names, s Sizing) []Step {
	return []Step{
		{
			Name: "role",
			Create: []string{
				fmt.Sprintf("CREATE ROLE IF NOT EXISTS %s", n.Role),
				fmt.Sprintf("GRANT ROLE %s TO ROLE SYSADMIN", n.Role),
			},
			Drop: []string{
				fmt.Sprintf("DROP ROLE IF EXISTS %s", n.Role),
			},
		},
		{
			Name: "database",
			Create: []string{
				fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", n.Database),
				fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", n.Database, n.Schema),
				fmt.Sprintf("GRANT ALL ON DATABASE %s TO ROLE %s", n.Database, n.Role),
				fmt.Sprintf("GRANT ALL ON SCHEMA %s.%s TO ROLE %s", n.Database, n.Schema, n.Role),
			},
			Drop: []string{
				fmt.Sprintf("DROP DATABASE IF EXISTS %s", n.Database),
			},
		},
		{
			Name: "warehouse",
			Create: []string{
				fmt.Sprintf(
					"CREATE WAREHOUSE IF NOT EXISTS %s WAREHOUSE_SIZE = '%s'"+
						" AUTO_SUSPEND = 60 AUTO_RESUME = TRUE INITIALLY_SUSPENDED = TRUE",
					n.Warehouse, s.WarehouseSize,
				),
				fmt.Sprintf("GRANT USAGE ON WAREHOUSE %s TO ROLE %s", n.Warehouse, n.Role),
			},
			Drop: []string{
				fmt.Sprintf("DROP WAREHOUSE IF EXISTS %s", n.Warehouse),
			},
		},
		{
			Name: "compute-pool",
			Create: []string{
				fmt.Sprintf(
					"CREATE COMPUTE POOL IF NOT EXISTS %s MIN_NODES = %d MAX_NODES = %d"+
						" INSTANCE_FAMILY = %s AUTO_SUSPEND_SECS = 3600",
					n.ComputePool, s.MinNodes, s.MaxNodes, s.InstanceFamily,
				),
				fmt.Sprintf("GRANT USAGE, MONITOR ON COMPUTE POOL %s TO ROLE %s", n.ComputePool, n.Role),
			},
			Drop: []string{
				// running services hold the pool. stop them first.
				fmt.Sprintf("ALTER COMPUTE POOL IF EXISTS %s STOP ALL", n.ComputePool),
				fmt.Sprintf("DROP COMPUTE POOL IF EXISTS %s", n.ComputePool),
			},
		},
		{
			Name: "stage",
			Create: []string{
				fmt.Sprintf(
					"CREATE STAGE IF NOT EXISTS %s DIRECTORY = (ENABLE = TRUE)"+
						" ENCRYPTION = (TYPE = 'SNOWFLAKE_SSE')",
					n.Qualified(n.Stage),
				),
				fmt.Sprintf("GRANT READ, WRITE ON STAGE %s TO ROLE %s", n.Qualified(n.Stage), n.Role),
			},
			Drop: []string{
				fmt.Sprintf("DROP STAGE IF EXISTS %s", n.Qualified(n.Stage)),
			},
		},
		{
			Name: "tables",
			Create: []string{
				fmt.Sprintf(
					"CREATE TABLE IF NOT EXISTS %s ("+
						"IMAGE_NAME VARCHAR(16777216), BASE64BYTES VARCHAR(16777216))",
					n.Qualified("IMAGES_LANDING"),
				),
				fmt.Sprintf(
					"CREATE TABLE IF NOT EXISTS %s ("+
						"FILENAME VARCHAR(16777216), IMAGE_DATA VARCHAR(16777216),"+
						" OUTPUT VARCHAR(16777216), LABEL NUMBER(38,0), BOX VARIANT, SCORE FLOAT)",
					n.Qualified("DETECTIONS"),
				),
			},
			Drop: dropTables(n, append([]string{"IMAGES_LANDING", "DETECTIONS"}, datasetTables...)),
		},
		{
			Name: "notebook",
			// created by `notebook deploy`.
			Drop: []string{
				fmt.Sprintf("DROP NOTEBOOK IF EXISTS %s", n.Qualified(n.Notebook)),
			},
		},
		{
			Name: "app",
			// created by `app deploy`.
			Drop: []string{
				fmt.Sprintf("DROP STREAMLIT IF EXISTS %s", n.Qualified(n.App)),
			},
		},
	}
}

func dropTables(n Names, tables []string) []string {
	drops := make([]string, len(tables))
	for i, t := range tables {
		drops[i] = fmt.Sprintf("DROP TABLE IF EXISTS %s", n.Qualified(t))
	}
	return drops
}

// Teardown returns the drop statements of steps, last created first,
// skipping step names present in skip.
func Teardown(steps []Step, skip map[string]bool) []Step {
	out := []Step{}
	for i := len(steps) - 1; 0 <= i; i-- {
		if skip[steps[i].Name] {
			continue
		}
		out = append(out, steps[i])
	}
	return out
}
