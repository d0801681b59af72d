// Package viewer serves the GPIO log to a browser.
//
// Every read (data, stats, CSV) first exports a fresh snapshot of the live
// database and then queries the copy read-only. Data, stats and clear always
// answer 200; failures come back in the payload's error or message field.
// Connected dashboards also get the latest data pushed over a WebSocket.
package viewer
