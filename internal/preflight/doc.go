// Package preflight provides readiness checks for the binaries and
// filesystem paths that yayd depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs any failures as warnings;
//     jobs still run so a transient permission problem surfaces per job.
//   - The CLI "yayd deps" command uses CheckSystemDeps to render a table.
package preflight
