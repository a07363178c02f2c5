package apierror

// UserMessage translates err into text safe to show an end user. Transport
// and server text never passes through; only the kind (and a 409 status)
// selects the message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	ce := Ensure(err)
	switch ce.Kind {
	case KindTimeout:
		return "The server took too long to respond. Please try again."
	case KindNetworkUnavailable:
		return "Unable to reach the server. Check your connection and try again."
	case KindServerError:
		return "The server ran into a problem. Please try again later."
	case KindUnauthorized:
		return "Your email or password is incorrect, or your session has expired."
	case KindForbidden:
		return "You do not have permission to do that."
	case KindNotFound:
		return "The requested item could not be found."
	case KindValidationFailed:
		return "Some of the details you entered are not valid."
	}
	if ce.IsConflict() {
		return "An account with this email or username already exists."
	}
	return "Something went wrong. Please try again."
}

// Retryable reports whether the caller may offer a retry action.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnauthorized, KindNetworkUnavailable, KindTimeout:
		return true
	}
	return false
}
