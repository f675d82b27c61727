// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package lifecycle

// State is a step of the credential lifecycle.
type State string

const (
	Start            State = "Start"
	CheckCAAnchor    State = "CheckCAAnchor"
	LoadExisting     State = "LoadExisting"
	ValidateExisting State = "ValidateExisting"
	Reuse            State = "Reuse"
	IssueNew         State = "IssueNew"
	GenerateKey      State = "GenerateKey"
	BuildCSR         State = "BuildCSR"
	SubmitCSR        State = "SubmitCSR"
	AwaitApproval    State = "AwaitApproval"
	FetchCert        State = "FetchCert"
	ValidateNew      State = "ValidateNew"
	Persist          State = "Persist"
	BindPrivileges   State = "BindPrivileges"
	Done             State = "Done"
	Failed           State = "Failed"
)

// Terminal returns true for states ending a run.
func (s State) Terminal() bool {
	return s == Reuse || s == Done || s == Failed
}

func (s State) String() string {
	return string(s)
}
