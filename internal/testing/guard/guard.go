package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("EMPLOYDEX_TEST_MODE") == "" {
			_ = os.Setenv("EMPLOYDEX_TEST_MODE", "1")
		}
	})
}
