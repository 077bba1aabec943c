// Package services holds the error taxonomy shared by the pipeline stages
// and the thin clients for external collaborator processes (vspipe,
// av-scenechange). Every external failure is tagged with one of the sentinel
// markers so the driver can classify it without string matching.
package services
