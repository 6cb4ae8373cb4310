package plan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jask/comptes/internal/extract"
	"github.com/jask/comptes/internal/service"
)

// Plan lists statements to import in one run.
type Plan struct {
	Statements []Statement `yaml:"statements"`

	dir string
}

// Statement is one file to import into one account.
type Statement struct {
	Bank    string `yaml:"bank"`
	File    string `yaml:"file"`
	Account int64  `yaml:"account"`
	Mode    string `yaml:"mode"`

	// Edits use the "<pos>:<field>=<value>" form of the --edit flag.
	Edits []string `yaml:"edits"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Parse decodes and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if len(p.Statements) == 0 {
		return nil, fmt.Errorf("plan has no statements")
	}
	for i, st := range p.Statements {
		if _, err := extract.ParseBank(st.Bank); err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		if strings.TrimSpace(st.File) == "" {
			return nil, fmt.Errorf("statement %d: file is required", i+1)
		}
		if st.Account <= 0 {
			return nil, fmt.Errorf("statement %d: account must be positive", i+1)
		}
		if _, err := service.ParseEdits(st.Edits); err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return &p, nil
}

// Path resolves a statement file, expanding ~ and making relative paths
// relative to the plan file.
func (p *Plan) Path(st Statement) (string, error) {
	if strings.HasPrefix(st.File, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, st.File[2:]), nil
	}
	if filepath.IsAbs(st.File) || p.dir == "" {
		return st.File, nil
	}
	return filepath.Join(p.dir, st.File), nil
}

func (p *Plan) Print(w io.Writer) {
	for i, st := range p.Statements {
		mode := st.Mode
		if mode == "" {
			mode = "-"
		}
		fmt.Fprintf(w, "[%d] bank=%s file=%s account=%d mode=%s\n", i+1, st.Bank, st.File, st.Account, mode)
		for _, e := range st.Edits {
			fmt.Fprintf(w, "    edit %s\n", e)
		}
	}
}
