package sqlite

import "github.com/hashicorp/go-multierror"

// joinErrors returns nil when every err is nil, the error itself when only
// one is set, and a multierror otherwise.
func joinErrors(errs ...error) error {
	merr := multierror.Append(nil, errs...)
	if len(merr.Errors) == 1 {
		return merr.Errors[0]
	}
	return merr.ErrorOrNil()
}
