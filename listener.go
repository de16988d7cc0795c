package feedbatch

//RunListener run listener
type RunListener interface {
	//BeforeRun execute before the start hook of a run
	BeforeRun(execution *RunExecution) BatchError
	//AfterRun execute after a run ends either normally or abnormally
	AfterRun(execution *RunExecution) BatchError
}
