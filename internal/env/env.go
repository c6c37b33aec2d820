package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Load reads dotenv files in order. Variables already present in the process
// environment, or set by an earlier file, are left untouched. Missing files are
// skipped.
func Load(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}
