package queue

// renderTransitions enumerates the legal render state machine edges:
// pending -> rendering -> {success | failed}. Both outcomes are terminal.
var renderTransitions = map[RenderStatus][]RenderStatus{
	RenderPending:   {RenderRendering},
	RenderRendering: {RenderSuccess, RenderFailed},
}

// uploadTransitions enumerates the legal upload state machine edges:
// idle -> waiting_schedule -> uploading -> {success | failed}. The
// waiting_schedule and uploading edges additionally require render success;
// see allowedUploadTransition.
var uploadTransitions = map[UploadStatus][]UploadStatus{
	UploadIdle:            {UploadWaitingSchedule},
	UploadWaitingSchedule: {UploadUploading},
	UploadUploading:       {UploadSuccess, UploadFailed},
}

func allowedRenderTransition(from, to RenderStatus) bool {
	for _, next := range renderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// allowedUploadTransition validates an upload edge in the context of the
// job's render status. The upload machine may only leave idle once the render
// has succeeded.
func allowedUploadTransition(render RenderStatus, from, to UploadStatus) bool {
	switch to {
	case UploadWaitingSchedule, UploadUploading:
		if render != RenderSuccess {
			return false
		}
	}
	for _, next := range uploadTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
