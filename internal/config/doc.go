// Package config loads the process settings and request files, both written
// in HCL. Expressions are evaluated with the process environment exposed as
// the `env` map plus the `lookup` and `coalesce` functions, so
//
//	weights_base_url = lookup(env, "FACERIG_WEIGHTS_URL", "")
//
// works in either file. Anything not set falls back to the defaults the
// packaged workflow was built against.
package config
