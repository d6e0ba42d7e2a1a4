package unit

import (
	"Syncrate/backend/peer"
	"Syncrate/backend/peer/impl"
)

var editorFac peer.Factory = impl.NewEditor
