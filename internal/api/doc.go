// Package api provides the HTTP status API for Doorkeeper.
//
// It exposes the controller snapshot, the transition history and a
// remote request endpoint. Requests POSTed here are republished onto
// the door request topic rather than applied directly, so every remote
// client goes through the same bus path and the same preconditions.
package api
