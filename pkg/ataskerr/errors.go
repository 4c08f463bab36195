/*
Copyright 2026 The Atasks Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ataskerr defines the error taxonomy shared by the router,
// transports, and codecs: the local errors raised at the caller site and the
// remote errors carried through the wire envelope and reconstructed there.
package ataskerr

import (
	"errors"
	"fmt"
)

// Local errors. These never cross the wire; they report a missing or
// misconfigured local binding.
var (
	ErrNoCodecRegistered  = errors.New("atask: no codec registered for namespace")
	ErrNoClientTransport  = errors.New("atask: no client transport registered for namespace")
	ErrTransport          = errors.New("atask: transport error")
	ErrDuplicateTask      = errors.New("atask: task already registered")
	ErrCallbackNotInstall = errors.New("atask: no callback registered on transport")
)

// JobNotFoundError reports that the server received a name it does not
// know. It travels the wire as an ErrorEnvelope with Kind "JobNotFound" and
// is reconstructed client-side into this type.
type JobNotFoundError struct {
	Name string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("atask: job not found: %s", e.Name)
}

// RemoteError is the client-side reconstruction of an arbitrary error a task
// raised on the server. Kind identifies the error's origin (the Go type name
// of the error the task returned); Details optionally carries a
// traceback-like string for diagnostics.
type RemoteError struct {
	Kind    string
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// DuplicateRegistrationError reports a second registration attempt of the
// same task name within one namespace. Not remotable: raised at
// registration time, synchronously, on the registering process.
type DuplicateRegistrationError struct {
	Namespace string
	Name      string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("atask: duplicate task registration in %s: %s", e.Namespace, e.Name)
}
