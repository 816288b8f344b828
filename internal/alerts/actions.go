package alerts

// Action verbs understood by the conversation router.
const (
	VerbStart         = "start"
	VerbHelp          = "help"
	VerbRegister      = "register"
	VerbCreateRequest = "create-request"
	VerbViewRequests  = "view-requests"
	VerbSubmitOffer   = "submit-offer"
	VerbAcceptOffer   = "accept-offer"
	VerbRejectOffer   = "reject-offer"
	VerbDeleteRequest = "delete-request"
	VerbListUsers     = "list-users"
	VerbSetRole       = "set-role"
	VerbCancel        = "cancel"
)
