// Package deps reports the availability of the external tools cbzxl shells
// out to. The encoder is the only hard requirement; ImageMagick is optional
// and only enables the pre-encode color profile repair.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency cbzxl relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Required returns the requirements list for the given tool binaries.
func Required(encoderBinary, magickBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "cjxl",
			Command:     encoderBinary,
			Description: "JPEG XL encoder, required for image conversion",
		},
		{
			Name:        "magick",
			Command:     magickBinary,
			Description: "ImageMagick, repairs color profiles before encoding",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
