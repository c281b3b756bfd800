package publish

// state is the saga's internal position. Only Outcome leaves the package.
type state int

const (
	stateStart state = iota
	stateUploading
	stateUploadFailed
	stateUploaded
	stateCreatingRecord
	stateRecordFailed
	stateRollingBack
	stateRecordCreated
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateUploading:
		return "uploading"
	case stateUploadFailed:
		return "upload-failed"
	case stateUploaded:
		return "uploaded"
	case stateCreatingRecord:
		return "creating-record"
	case stateRecordFailed:
		return "record-failed"
	case stateRollingBack:
		return "rolling-back"
	case stateRecordCreated:
		return "record-created"
	default:
		return "unknown"
	}
}

// transitions lists the legal moves of the state machine.
var transitions = map[state][]state{
	stateStart:          {stateUploading},
	stateUploading:      {stateUploadFailed, stateUploaded},
	stateUploaded:       {stateCreatingRecord},
	stateCreatingRecord: {stateRecordFailed, stateRecordCreated},
	stateRecordFailed:   {stateRollingBack},
}

func (s state) canMoveTo(next state) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
