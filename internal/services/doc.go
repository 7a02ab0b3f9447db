// Package services holds cross-cutting helpers shared by the external
// collaborator clients: the stage error taxonomy and context
// annotation for correlation.
package services
