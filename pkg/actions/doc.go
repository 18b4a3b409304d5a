/*
Package actions provides the built-in action handlers.

	verify_content      content authenticity check via a ports.ContentVerifier
	create_ruv_profile  reputation profile stored as long-term memory
	make_decision       single condition, or a full rule set via the decision framework
	store_data          arbitrary value stored as memory
	transform_data      expression applied to an input
	call_api            outbound HTTP call with retries
	wait                fixed delay, cancelled with the step context

Handler configs are decoded with mapstructure, so values may arrive as the
loosely typed output of YAML or JSON decoding.
*/
package actions
