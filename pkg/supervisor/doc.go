/*
Package supervisor is the core of the hosting service: the registry of live
project runtimes and every lifecycle transition over them.

# Architecture

	┌───────────────────── SUPERVISOR ─────────────────────┐
	│                                                        │
	│  ┌──────────────────────────────────────────┐        │
	│  │              Registry                     │        │
	│  │  project-id → Runtime                     │        │
	│  │  - single point of mutual exclusion       │        │
	│  │  - never exposed by reference             │        │
	│  └───────────────┬──────────────────────────┘        │
	│                  │                                     │
	│  ┌───────────────▼──────────────────────────┐        │
	│  │              Runtime                      │        │
	│  │  child process (own process group)        │        │
	│  │  ├── pump task:  output → ring + logfile  │        │
	│  │  └── waiter task: exit → postmortem       │        │
	│  │                   → crash-restart loop    │        │
	│  └──────────────────────────────────────────┘        │
	└────────────────────────────────────────────────────┘

Per project the state machine is:

	          Start()           spawn ok
	STOPPED ─────────► STARTING ─────► RUNNING
	   ▲                │                │
	   │ admission fail │                │ exit
	   └────────────────┘                ▼
	        CRASHED-BACKOFF ◄──────── EXITED
	           │   (autostart && !stopping)
	           ▼ delay elapsed, Start()

STARTING and CRASHED-BACKOFF are held by the waiter task; RUNNING is a
registry entry with stopping unset; STOPPED is the absence of an entry.

# Guarantees

  - At most one live Runtime per project at any instant.
  - A Runtime exists exactly while its Run row is open.
  - Start/Stop/Restart for one project are serialized.
  - Log lines reach the on-disk log in child-emission order; the EXIT
    trailer is written after the pump has drained, or after waiting 5s
    for it.
  - Crash backoff doubles per unattended restart, 5s up to 90s.
  - Errors inside pump and waiter are logged and swallowed; background
    tasks never take the supervisor down.
*/
package supervisor
