package safe

import (
	"SMSDesk/logger"
)

// Go starts a goroutine that recovers from panic so a bad
// connection handler cannot take the whole process down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
