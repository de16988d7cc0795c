package feedbatch

import "fmt"

var jobRegistry = make(map[string]ChainedJob)

// Register register a chained job under its plugin/name scheduling key
func Register(job ChainedJob) error {
	key := JobKey(job)
	if _, ok := jobRegistry[key]; ok {
		return fmt.Errorf("job with key:%v has already been registered", key)
	}
	jobRegistry[key] = job
	return nil
}

// Unregister remove a chained job
func Unregister(job ChainedJob) {
	delete(jobRegistry, JobKey(job))
}

// GetJob look up a registered job by scheduling key
func GetJob(jobKey string) (ChainedJob, bool) {
	job, ok := jobRegistry[jobKey]
	return job, ok
}
