// Package feed holds the session-level feed client: the bounded tick
// buffer, the merged status snapshot, the subscription registry, and
// the Session facade that ties them to the connection manager and
// message dispatcher. One Session per consumer; there is no ambient
// singleton.
package feed
