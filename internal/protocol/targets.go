package protocol

// Command targets a client may invoke. Server-pushed event targets are the
// model.EventName values.
const (
	TargetCreateSession       = "CreateSession"
	TargetJoinSession         = "JoinSession"
	TargetStartSession        = "StartSession"
	TargetStartRound          = "StartRound"
	TargetStartGeneratedRound = "StartGeneratedRound"
	TargetSubmitAttempt       = "SubmitAttempt"
	TargetNextRound           = "NextRound"
	TargetEndSession          = "EndSession"
	TargetGetMemberList       = "GetMemberList"
	TargetGetLeaderboard      = "GetLeaderboard"
)
