/*
Package sandbox provisions per-project dependency environments and runs
vetted package installs inside them.

Sandboxes are created lazily on first need with the host interpreter's venv
module, bounded by a creation timeout. Installs accept either a single
package specification checked against a conservative grammar, or the
project's requirements.txt with flag lines, URLs and VCS references
rejected wholesale. Install attempts count against the daily quota whether
or not they succeed; failures surface the last 1500 bytes of installer
output for diagnosis.
*/
package sandbox
