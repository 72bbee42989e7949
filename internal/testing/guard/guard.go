package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WARDBOOK_TEST_MODE") == "" {
			_ = os.Setenv("WARDBOOK_TEST_MODE", "1")
		}
	})
}
