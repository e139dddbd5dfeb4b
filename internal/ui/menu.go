package ui

import (
	"fmt"
	"os"
	"strconv"
)

type menuOption struct {
	title   string
	handler func()
}

// ShowMenu displays the main menu and handles user input
func ShowMenu() {
	menuOptions := []menuOption{
		{"Create a wooded mask for a scene with the model", PredictMask},
		{"Create a wooded mask for a scene with an NDVI threshold", ThresholdMask},
		{"Evaluate a mask against a reference mask", EvaluateMask},
		{"Create wooded masks for every scene of a manifest", BatchPredict},
		{"Compute NDVI time-series features for a folder of scenes", TemporalFeatures},
		{"View the run history", ListHistory},
		{"Exit the application", func() { fmt.Println("Exiting..."); os.Exit(0) }},
	}

	for {
		fmt.Println("\033[34m===================\033[0m")
		for i, opt := range menuOptions {
			fmt.Printf("\033[34m%d. %s\033[0m\n", i+1, opt.title)
		}

		input, err := readLine("Please enter your choice: ")
		if err != nil && input == "" {
			fmt.Println("\nExiting...")
			return
		}
		choice, err := strconv.Atoi(input)
		if err != nil {
			fmt.Printf("\n\033[31mInvalid input. Please enter a number.\033[0m\n")
			continue
		}
		if choice < 1 || choice > len(menuOptions) {
			fmt.Println("\033[31mInvalid choice. Please try again.\033[0m")
			continue
		}

		menuOptions[choice-1].handler()
	}
}
