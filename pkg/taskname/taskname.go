package taskname

const (
	// Membership tasks
	MembershipFinalizeSweep = "membership:finalize:sweep"
)
