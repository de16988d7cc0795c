package status

//RunStatus status of a chained job run
type RunStatus string

const (
	//STARTING run has been accepted but the start hook has not finished
	STARTING RunStatus = "STARTING"
	//STARTED run is executing batches
	STARTED RunStatus = "STARTED"
	//STOPPING run was asked to stop and will halt before the next batch
	STOPPING RunStatus = "STOPPING"
	//STOPPED run halted between batches without completing the chain
	STOPPED RunStatus = "STOPPED"
	//COMPLETED run reached the empty batch and the feed was promoted
	COMPLETED RunStatus = "COMPLETED"
	//FAILED run aborted on an infrastructure error
	FAILED RunStatus = "FAILED"
	//UNKNOWN run aborted for an unknown reason
	UNKNOWN RunStatus = "UNKNOWN"
)

var precedence = map[RunStatus]int{
	STARTING:  0,
	STARTED:   1,
	STOPPING:  2,
	STOPPED:   3,
	COMPLETED: 4,
	FAILED:    5,
	UNKNOWN:   6,
}

//And merge two statuses, keeping the more terminal one
func (s RunStatus) And(other RunStatus) RunStatus {
	i1, ok1 := precedence[s]
	i2, ok2 := precedence[other]
	if ok1 && ok2 {
		if i1 < i2 {
			return other
		}
		return s
	} else if ok1 {
		return s
	}
	return other
}

//Terminal report whether no further transition is possible
func (s RunStatus) Terminal() bool {
	return s == STOPPED || s == COMPLETED || s == FAILED || s == UNKNOWN
}
