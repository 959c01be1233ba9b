/*
Package facade is the transport-agnostic command surface of the hosting
service: project CRUD, lifecycle, env vars, installs, log paging, export and
import, and the admin operations.

Every project-scoped operation verifies the caller is the project's owner or
an admin; admin operations verify membership in the admin set. Project
create, update, rename, autostart, delete, import, start, restart, env and
install operations pass the shared admission front (rate limit, ban, gate
state) before touching anything; stop and export check only the rate limit
and the ban, and resolving an entrypoint pick checks only the ban. All failures come back classified (pkg/errdefs);
raw errors and internal paths never reach the front end.
*/
package facade
