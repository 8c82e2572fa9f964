package catalog

// Frequently reused argument shapes
var (
	jobArg = ArgumentDefinition{
		Name:        "job",
		Type:        TypeNumber,
		Description: "Number of parallel build jobs",
	}
	batchArg = ArgumentDefinition{
		Name:        "batch",
		Type:        TypeBoolean,
		Description: "Run without interactive waveform viewer",
		Default:     false,
	}
	binaryArg = ArgumentDefinition{
		Name:        "binary",
		Type:        TypeFile,
		Description: "Workload binary to load into the simulated SoC",
		Required:    true,
	}
	configArg = ArgumentDefinition{
		Name:        "config",
		Type:        TypeString,
		Description: "Chipyard-style configuration class",
	}
	outputDirArg = ArgumentDefinition{
		Name:        "output_dir",
		Type:        TypeDirectory,
		Description: "Directory for generated artifacts",
	}
)

// builtinOperations mirrors the command surface of the bbdev CLI
var builtinOperations = []OperationDefinition{
	// Verilator flow
	{Command: "verilator", Name: "clean", Description: "Remove Verilator build outputs"},
	{
		Command:     "verilator",
		Name:        "verilog",
		Description: "Elaborate the design and emit Verilog",
		Arguments:   []ArgumentDefinition{configArg, outputDirArg},
	},
	{
		Command:     "verilator",
		Name:        "build",
		Description: "Compile the Verilator simulator",
		Arguments:   []ArgumentDefinition{jobArg, configArg},
	},
	{
		Command:     "verilator",
		Name:        "sim",
		Description: "Run a workload on the Verilator simulator",
		Arguments:   []ArgumentDefinition{binaryArg, batchArg},
	},
	{
		Command:     "verilator",
		Name:        "run",
		Description: "Clean, elaborate, build and simulate in one step",
		Arguments:   []ArgumentDefinition{jobArg, binaryArg, configArg, batchArg},
	},

	// VCS flow
	{Command: "vcs", Name: "clean", Description: "Remove VCS build outputs"},
	{
		Command:     "vcs",
		Name:        "build",
		Description: "Compile the VCS simulator",
		Arguments:   []ArgumentDefinition{jobArg, configArg},
	},
	{
		Command:     "vcs",
		Name:        "sim",
		Description: "Run a workload on the VCS simulator",
		Arguments: []ArgumentDefinition{
			binaryArg,
			batchArg,
			{Name: "coverage", Type: TypeBoolean, Description: "Collect coverage database"},
		},
	},

	// FireSim flow
	{
		Command:     "firesim",
		Name:        "buildbitstream",
		Description: "Build FPGA bitstreams for the configured targets",
		Arguments: []ArgumentDefinition{
			{Name: "config_build", Type: TypeFile, Description: "config_build.yaml override"},
		},
	},
	{
		Command:     "firesim",
		Name:        "infrasetup",
		Description: "Prepare the run farm for a workload",
		Arguments: []ArgumentDefinition{
			{Name: "config_runtime", Type: TypeFile, Description: "config_runtime.yaml override"},
		},
	},
	{
		Command:     "firesim",
		Name:        "runworkload",
		Description: "Launch a workload on the run farm",
		Arguments: []ArgumentDefinition{
			{Name: "config_runtime", Type: TypeFile, Description: "config_runtime.yaml override"},
		},
	},

	// Software side
	{
		Command:     "compiler",
		Name:        "build",
		Description: "Build the accelerator compiler toolchain",
		Arguments:   []ArgumentDefinition{jobArg},
	},
	{
		Command:     "workload",
		Name:        "build",
		Description: "Build test workloads",
		Arguments: []ArgumentDefinition{
			{Name: "target", Type: TypeChoice, Description: "Workload target", Choices: []string{"baremetal", "linux", "all"}, Default: "baremetal"},
			jobArg,
		},
	},
	{
		Command:     "marshal",
		Name:        "build",
		Description: "Build a FireMarshal image",
		Arguments: []ArgumentDefinition{
			{Name: "workload", Type: TypeFile, Description: "FireMarshal workload json", Required: true},
		},
	},
	{
		Command:     "marshal",
		Name:        "launch",
		Description: "Launch a FireMarshal image in QEMU or Spike",
		Arguments: []ArgumentDefinition{
			{Name: "workload", Type: TypeFile, Description: "FireMarshal workload json", Required: true},
			{Name: "spike", Type: TypeBoolean, Description: "Use Spike instead of QEMU"},
		},
	},
	{
		Command:     "sardine",
		Name:        "run",
		Description: "Run the sardine regression suite",
		Arguments: []ArgumentDefinition{
			{Name: "workload", Type: TypeString, Description: "Filter tests by workload name"},
			{Name: "coverage", Type: TypeBoolean, Description: "Collect coverage"},
		},
	},
}

// Builtin returns a copy of the built-in operation table
func Builtin() []OperationDefinition {
	out := make([]OperationDefinition, len(builtinOperations))
	copy(out, builtinOperations)
	return out
}
