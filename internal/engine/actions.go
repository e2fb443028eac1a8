package engine

// Action names carried in button callbacks. Refs accompany the names
// where a concrete unit, responder, or request must travel with the
// press: unit actions carry the unit name, responder actions the chat
// identity, request actions the request id.
const (
	actionCancelDialog = "cancel"   // abort the active dialog
	actionBack         = "back"     // return to the previous panel
	actionUnit         = "unit"     // requester picked a unit
	actionResponder    = "resp"     // requester picked a responder
	actionCancelReq    = "cancelr"  // requester withdraws a pending request
	actionReply        = "reply"    // requester opens a reply prompt
	actionView         = "view"     // responder opens request detail
	actionAccept       = "accept"   // responder accepts a pending request
	actionReject       = "reject"   // responder opens the reason picker
	actionReason       = "reason"   // responder picked a rejection reason
	actionRespond      = "respond"  // responder opens a response prompt
	actionContinue     = "continue" // responder continues the thread
	actionFinish       = "finish"   // either party closes an accepted request
	actionAdminStats   = "astats"   // admin requests aggregate counts
	actionAdminRoster  = "aroster"  // admin requests the roster listing
	actionAdminAdd     = "aadd"     // admin starts the add-responder dialog
	actionAdminUnit    = "aunit"    // admin picked a unit while adding
	actionAdminEdit    = "aedit"    // admin starts the edit dialog
	actionEditUnit     = "eunit"    // admin picked a unit while editing
	actionEditTarget   = "eresp"    // admin picked the responder to edit
	actionEditName     = "ename"    // admin chose to rename
	actionEditChatID   = "echat"    // admin chose to change the chat id
)
