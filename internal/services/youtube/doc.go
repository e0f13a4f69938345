// Package youtube publishes rendered videos through the YouTube Data API
// resumable upload protocol. Credentials come from the standard OAuth
// installed-app files: client_secrets.json plus a previously granted
// token.json. The package refreshes expired access tokens itself; it never
// runs the interactive consent flow.
package youtube
