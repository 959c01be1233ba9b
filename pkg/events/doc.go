/*
Package events distributes asynchronous service events (crash notifications,
watchdog kills, bans, broadcasts) to front-end subscribers.

Delivery is best effort: each subscriber has a bounded buffer and slow
consumers drop events rather than blocking the publisher.
*/
package events
