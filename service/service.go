// Package service implements the sign-in, key bootstrap and wallet flow of
// the demo: identity widget, session bridge, key provider, wallet actions and
// the login endpoint that issues bearer tokens.
package service

import "github.com/ipfs/go-log/v2"

var logger = log.Logger("sfa/service")
