// Package producer feeds samples into the store.
//
// Two operating modes exist, selected by configuration:
//
//   - remote: the controller calls log_data(pin_state, led_state) over the
//     bridge. Each call appends exactly one row and answers true or false.
//     Failures are logged and never returned to the controller.
//   - timer: a Ticker appends a synthetic sample every interval, alternating
//     0 and 1 from an internal counter. A failed tick is logged and the loop
//     carries on at the next tick.
//
// In both modes the bridge also serves clear_log, get_all_data,
// export_database and export_to_csv.
package producer
