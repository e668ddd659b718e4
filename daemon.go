// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import "github.com/creachadair/capflow/loop"

// daemons drives every Request.Send's daemon branch. Its error sink is
// nil: spec.md §7 requires daemon branches to swallow errors once the
// client has lost interest, since there is no longer anyone to report the
// failure to.
var daemons = loop.NewDaemons(nil)
