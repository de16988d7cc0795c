package feedbatch

import (
	"os"

	"github.com/productsync/feedbatch/internal/logs"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for the engine and driver
func SetLogger(l logs.Logger) {
	logger = l
}

//task pool
const (
	DefaultRunPoolSize = 10
)

var runPool = newTaskPool(DefaultRunPoolSize)

//SetMaxRunningJobs set max number of parallel async runs
func SetMaxRunningJobs(size int) {
	runPool.SetMaxSize(size)
}
