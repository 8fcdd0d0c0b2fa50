// Package core provides the client-side logic for driving table ingestion
// jobs and projecting citations onto table windows.
//
// # Error Codes Reference
//
// This file maps classified errors to user-friendly messages with codes for
// support reference. Messages render as short inline text next to the
// control that triggered the failing action.
//
// # Lookup Errors (TBL001-TBL099)
//
//	TBL001 - Not found: The table, job or highlight no longer exists
//	         Action: Refresh the table list and try again
//	         Kind: not_found
//
// # Citation Errors (CIT001-CIT099)
//
//	CIT001 - Invalid citation: The citation has no usable rows or columns
//	         Action: Re-run the query that produced this highlight
//	         Kind: invalid_citation
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Upload rejected: The backend accepted the file but returned no job
//	         Action: Check the file and try again
//	         Kind: upload_rejected
//
//	UPL002 - System busy: Too many uploads in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent uploads"
//
//	UPL003 - Session expired: Upload session not found
//	         Action: The upload may have expired. Please start a new upload
//	         Patterns: "upload session not found"
//
//	UPL004 - Upload cancelled: Upload was cancelled by user
//	         Action: Start a new upload when ready
//	         Patterns: "context canceled"
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - Job failed: the backend's own message is shown verbatim
//	         Action: Fix the file and upload it again
//	         Kind: job_failed
//
// # Network Errors (NET001-NET099)
//
//	NET001 - Backend unavailable: The service could not be reached
//	         Action: Please try again in a few moments
//	         Kind: transient
//
//	NET002 - Timeout: The service did not answer in time
//	         Action: Please try again
//	         Kind: timeout
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request: the backend's detail is shown verbatim
//	         Action: Correct the input and try again
//	         Kind: invalid
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Classified errors are mapped by kind first. Unclassified errors fall back
// to case-insensitive pattern matching; the first matching pattern wins.
package core

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[Kind]UserMessage{
	KindNotFound: {
		Message: "The requested table, job or highlight was not found",
		Action:  "Refresh the table list and try again",
		Code:    "TBL001",
	},
	KindInvalidCitation: {
		Message: "The citation has no usable rows or columns",
		Action:  "Re-run the query that produced this highlight",
		Code:    "CIT001",
	},
	KindUploadRejected: {
		Message: "The upload was not accepted",
		Action:  "Check the file and try again",
		Code:    "UPL001",
	},
	KindTransient: {
		Message: "The table service could not be reached",
		Action:  "Please try again in a few moments",
		Code:    "NET001",
	},
	KindTimeout: {
		Message: "The table service did not answer in time",
		Action:  "Please try again",
		Code:    "NET002",
	},
	KindJobFailed: {
		Message: DefaultFailureMessage,
		Action:  "Fix the file and upload it again",
		Code:    "JOB001",
	},
	KindInvalid: {
		Message: "The request was not valid",
		Action:  "Correct the input and try again",
		Code:    "REQ001",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers unclassified errors raised outside the backend client.
var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "Too many uploads in progress",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "upload session not found",
		msg: UserMessage{
			Message: "Upload session not found",
			Action:  "The upload may have expired. Please start a new upload",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Upload was cancelled",
			Action:  "Start a new upload when ready",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg:     kindMessages[KindTimeout],
	},
	{
		pattern: "connection refused",
		msg:     kindMessages[KindTransient],
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Job failures and invalid requests carry the backend's own text.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if errors.As(err, &e) {
		msg, ok := kindMessages[e.Kind]
		if ok {
			if (e.Kind == KindJobFailed || e.Kind == KindInvalid) && e.Detail != "" {
				msg.Message = e.Detail
			}
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// UserError returns just the user-friendly message.
func UserError(err error) string {
	return MapError(err).Message
}

// UserErrorWithCode returns the message followed by its support code.
func UserErrorWithCode(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return msg.Message
	}
	return msg.Message + " (" + msg.Code + ")"
}
