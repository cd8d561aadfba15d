package main

import "github.com/Alijeyrad/clinic_backend/cmd"

func main() {
	cmd.Execute()
}
